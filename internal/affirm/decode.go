package affirm

import "github.com/go-faster/jx"

// extractChargeID pulls the top-level "id" out of a charge response without
// binding to the rest of the provider's (historically drifting) body shape.
// Returns "" when no usable id is present.
func extractChargeID(body []byte) string {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}

	var id string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			id = s
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			id = n.String()
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return ""
	}
	return id
}
