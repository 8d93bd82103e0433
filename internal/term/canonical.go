package term

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for a term.
// This is the only serialization used for content-addressed identity.
//
// Differences from json.Marshal:
//  1. Object keys are sorted
//  2. No HTML escaping
//  3. Names are NFC normalized
//  4. Binder names are kept (they do not affect Hash, but they are
//     part of what a journal entry records)
func MarshalCanonical(t Term) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("nil term is forbidden in canonical JSON")
	}
	var obj canonicalObject
	switch t := t.(type) {
	case Rel:
		obj = canonicalObject{{"rel", []byte(strconv.Itoa(t.Index))}}
	case Var:
		obj = canonicalObject{{"var", mustString(t.Name)}}
	case Evar:
		args, err := marshalList(t.Args)
		if err != nil {
			return nil, err
		}
		obj = canonicalObject{{"evar", []byte(strconv.Itoa(t.ID))}, {"args", args}}
	case App:
		head, spine := Decompose(t)
		fn, err := MarshalCanonical(head)
		if err != nil {
			return nil, err
		}
		args, err := marshalList(spine)
		if err != nil {
			return nil, err
		}
		obj = canonicalObject{{"app", fn}, {"args", args}}
	case Lambda:
		return marshalBinder("lambda", t.Name, t.Type, t.Body)
	case Prod:
		return marshalBinder("prod", t.Name, t.Type, t.Body)
	case LetIn:
		value, err := MarshalCanonical(t.Value)
		if err != nil {
			return nil, err
		}
		inner, err := marshalBinder("let", t.Name, t.Type, t.Body)
		if err != nil {
			return nil, err
		}
		obj = canonicalObject{{"value", value}, {"binder", inner}}
	case Sort:
		obj = canonicalObject{{"sort", []byte(strconv.Itoa(int(t.Kind)))}, {"level", mustString(t.Level)}}
	case Const:
		obj = canonicalObject{{"const", mustString(t.Name)}}
	case Ind:
		obj = canonicalObject{{"ind", mustString(t.Name)}}
	case Construct:
		obj = canonicalObject{{"construct", mustString(t.Ind)}, {"index", []byte(strconv.Itoa(t.Index))}}
	case Case:
		ret, err := MarshalCanonical(t.Return)
		if err != nil {
			return nil, err
		}
		scrut, err := MarshalCanonical(t.Scrutinee)
		if err != nil {
			return nil, err
		}
		branches, err := marshalList(t.Branches)
		if err != nil {
			return nil, err
		}
		obj = canonicalObject{
			{"case", mustString(t.Ind)},
			{"nparams", []byte(strconv.Itoa(t.NParams))},
			{"return", ret},
			{"scrutinee", scrut},
			{"branches", branches},
		}
	case Fix:
		return marshalFix("fix", t.Index, t.RecArgs, t.Names, t.Types, t.Bodies)
	case CoFix:
		return marshalFix("cofix", t.Index, nil, t.Names, t.Types, t.Bodies)
	default:
		return nil, fmt.Errorf("unsupported term for canonical JSON: %T", t)
	}
	return obj.marshal(), nil
}

func marshalBinder(kind, name string, typ, body Term) ([]byte, error) {
	ty, err := MarshalCanonical(typ)
	if err != nil {
		return nil, err
	}
	b, err := MarshalCanonical(body)
	if err != nil {
		return nil, err
	}
	return canonicalObject{{kind, mustString(name)}, {"type", ty}, {"body", b}}.marshal(), nil
}

func marshalFix(kind string, index int, recArgs []int, names []string, types, bodies []Term) ([]byte, error) {
	tys, err := marshalList(types)
	if err != nil {
		return nil, err
	}
	bs, err := marshalList(bodies)
	if err != nil {
		return nil, err
	}
	var rec bytes.Buffer
	rec.WriteByte('[')
	for i, r := range recArgs {
		if i > 0 {
			rec.WriteByte(',')
		}
		rec.WriteString(strconv.Itoa(r))
	}
	rec.WriteByte(']')
	var ns bytes.Buffer
	ns.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			ns.WriteByte(',')
		}
		ns.Write(mustString(n))
	}
	ns.WriteByte(']')
	return canonicalObject{
		{kind, []byte(strconv.Itoa(index))},
		{"rec_args", rec.Bytes()},
		{"names", ns.Bytes()},
		{"types", tys},
		{"bodies", bs},
	}.marshal(), nil
}

func marshalList(ts []Term) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, t := range ts {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(t)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalContext(ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, d := range ctx {
		if i > 0 {
			buf.WriteByte(',')
		}
		ty, err := MarshalCanonical(d.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		obj := canonicalObject{{"name", mustString(d.Name)}, {"type", ty}}
		if d.Body != nil {
			body, err := MarshalCanonical(d.Body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Name, err)
			}
			obj = append(obj, canonicalField{"body", body})
		}
		buf.Write(obj.marshal())
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type canonicalField struct {
	key string
	raw []byte
}

// canonicalObject is a JSON object whose values are already canonical.
type canonicalObject []canonicalField

// marshal writes the fields sorted by key. Keys are ASCII, so byte order
// and UTF-16 code unit order agree.
func (o canonicalObject) marshal() []byte {
	fields := append(canonicalObject(nil), o...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(mustString(f.key))
		buf.WriteByte(':')
		buf.Write(f.raw)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// mustString encodes s as a canonical JSON string, NFC normalized and
// without HTML escaping.
func mustString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		panic(err) // strings always encode
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
