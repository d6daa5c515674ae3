// Package wire implements the merchant line protocol codec.
//
// Frames are UTF-8 text of the form TAG:FIELD[:FIELD...] with ':' as the
// field separator. There is no length prefix, checksum, or version field;
// message boundaries come from the session layer (newline scanning or read
// boundaries, depending on the framing mode). The codec itself is stateless
// and operates on a single frame's bytes without any delimiter.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// Encode renders a frame to its wire bytes, without a trailing delimiter.
func Encode(f domain.Frame) ([]byte, error) {
	switch v := f.(type) {
	case domain.PayRequest:
		if v.Amount == 0 {
			return nil, domain.ErrInvalidAmount
		}
		if v.Code == "" {
			return nil, &domain.MalformedFieldsError{Tag: domain.TagPayRequest, Reason: "empty transaction code"}
		}
		return []byte(domain.TagPayRequest + ":" + strconv.FormatUint(v.Amount, 10) + ":" + v.Code), nil
	case domain.PaymentConfirmed:
		return []byte(domain.TagPaymentConfirmed), nil
	case domain.Receipt:
		return []byte(domain.TagReceipt + ":" + v.Data), nil
	default:
		return nil, fmt.Errorf("somapay: unencodable frame type %T", f)
	}
}

// Decode parses one frame from its wire bytes. The input must hold exactly
// one frame with no delimiter. Failures are typed: *domain.UnknownTagError
// when the tag matches no variant, *domain.MalformedFieldsError when a known
// tag's fields do not parse.
func Decode(b []byte) (domain.Frame, error) {
	s := string(b)
	tag, rest, hasFields := strings.Cut(s, ":")

	switch tag {
	case domain.TagPayRequest:
		amountField, code, ok := strings.Cut(rest, ":")
		if !hasFields || !ok {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: "want PAY:<amount>:<code>"}
		}
		amount, err := strconv.ParseUint(amountField, 10, 64)
		if err != nil {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: fmt.Sprintf("amount %q is not a positive integer", amountField)}
		}
		if amount == 0 {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: "amount must be greater than zero"}
		}
		if code == "" {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: "empty transaction code"}
		}
		return domain.PayRequest{Amount: amount, Code: code}, nil

	case domain.TagPaymentConfirmed:
		if hasFields {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: "unexpected fields"}
		}
		return domain.PaymentConfirmed{}, nil

	case domain.TagReceipt:
		if !hasFields {
			return nil, &domain.MalformedFieldsError{Tag: tag, Reason: "want RECEIPT:<data>"}
		}
		// rest is verbatim and may itself contain ':'.
		return domain.Receipt{Data: rest}, nil

	default:
		return nil, &domain.UnknownTagError{Tag: tag}
	}
}
