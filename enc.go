// JSON to au conversion.
//
// EncodeJSON streams newline-delimited JSON through an Encoder, one
// top-level value per record. Parsing is token-driven so object key
// order survives the trip — a map-based decode would shuffle keys and
// break decode(encode(x)) == x. Numbers decode as json.Number and are
// re-classified: integer if they parse as one (preserving signedness),
// double otherwise.
package au

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
)

// EncodeJSON reads JSON values from r and encodes each as one record.
// Returns the number of records written.
func EncodeJSON(r io.Reader, enc *Encoder) (int64, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records int64
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("json: %w", err)
		}
		_, err = enc.Encode(func(w *Writer) error {
			return writeJSONValue(dec, tok, w)
		})
		if err != nil {
			return records, err
		}
		records++
	}
}

// writeJSONValue emits the value beginning with tok.
func writeJSONValue(dec *json.Decoder, tok json.Token, w *Writer) error {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeJSONObject(dec, w)
		case '[':
			return writeJSONArray(dec, w)
		}
		return fmt.Errorf("json: unexpected %q", v.String())
	case string:
		w.String(v)
	case json.Number:
		return writeJSONNumber(v, w)
	case bool:
		w.Bool(v)
	case nil:
		w.Null()
	default:
		return fmt.Errorf("json: unexpected token %v", tok)
	}
	return nil
}

func writeJSONObject(dec *json.Decoder, w *Writer) error {
	w.BeginObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("json: object key is %v, not a string", keyTok)
		}
		w.Key(key)
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		if err := writeJSONValue(dec, valTok, w); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return fmt.Errorf("json: %w", err)
	}
	w.EndObject()
	return nil
}

func writeJSONArray(dec *json.Decoder, w *Writer) error {
	w.BeginArray()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: %w", err)
		}
		if err := writeJSONValue(dec, tok, w); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return fmt.Errorf("json: %w", err)
	}
	w.EndArray()
	return nil
}

func writeJSONNumber(n json.Number, w *Writer) error {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		w.Int(i)
		return nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		w.Uint(u)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("json: bad number %q: %w", n.String(), err)
	}
	w.Double(f)
	return nil
}
