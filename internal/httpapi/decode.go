package httpapi

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

const maxBodySize = 64 << 10

type field func(d *jx.Decoder) error

// decodeBody reads a JSON object from the request, dispatching known keys
// to fields and skipping the rest.
func decodeBody(r *http.Request, fields map[string]field) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		if err := f(d); err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return badBody(err)
	}
	return nil
}

func str(dst *string) field {
	return func(d *jx.Decoder) error {
		v, err := d.Str()
		*dst = v
		return err
	}
}

func optStr(dst **string) field {
	return func(d *jx.Decoder) error {
		v, err := d.Str()
		*dst = &v
		return err
	}
}

func integer(dst *int) field {
	return func(d *jx.Decoder) error {
		v, err := d.Int()
		*dst = v
		return err
	}
}

func optInt(dst **int) field {
	return func(d *jx.Decoder) error {
		v, err := d.Int()
		*dst = &v
		return err
	}
}

// money accepts both JSON numbers and decimal strings.
func money(dst *decimal.Decimal) field {
	return func(d *jx.Decoder) error {
		var raw string
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			raw = s
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			raw = n.String()
		default:
			return errors.Errorf("expected number or string, got %s", d.Next())
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func optMoney(dst **decimal.Decimal) field {
	return func(d *jx.Decoder) error {
		var v decimal.Decimal
		if err := money(&v)(d); err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func required(name, value string) error {
	if value == "" {
		return failure.Errorf(failure.BadRequest, "%s is required", name)
	}
	return nil
}
