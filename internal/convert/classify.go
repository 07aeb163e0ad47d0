// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// messageHints maps fragments of an unclassified error message to a kind.
// The first match wins.
var messageHints = []struct {
	fragment string
	kind     types.ErrorKind
}{
	{"not supported", types.KindUnsupportedFormat},
	{"unsupported", types.KindUnsupportedFormat},
	{"unknown format", types.KindUnsupportedFormat},
	{"corrupt", types.KindCorruptInput},
	{"malformed", types.KindCorruptInput},
	{"truncated", types.KindCorruptInput},
	{"unexpected eof", types.KindCorruptInput},
	{"connection", types.KindNetwork},
	{"network", types.KindNetwork},
	{"no such host", types.KindNetwork},
	{"timeout", types.KindNetwork},
	{"plugin", types.KindPlugin},
}

// Classify converts any error into a ConversionError with a non-empty
// message. A ConversionError already in the chain keeps its kind, and the
// context wrapped around it stays in the message.
func Classify(err error) *types.ConversionError {
	if err == nil {
		return nil
	}

	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "conversion failed without a message"
	}

	var ce *types.ConversionError
	if errors.As(err, &ce) {
		if !ce.Kind.Valid() {
			return types.NewError(types.KindUnknown, msg, err)
		}
		if strings.TrimSpace(ce.Message) == "" {
			return types.NewError(ce.Kind, "conversion failed ("+string(ce.Kind)+")", ce.Cause)
		}
		if err == error(ce) {
			return ce
		}
		return types.NewError(ce.Kind, strings.Replace(msg, ce.Error(), ce.Message, 1), err)
	}

	return types.NewError(kindOf(err, msg), msg, err)
}

func kindOf(err error, msg string) types.ErrorKind {
	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return types.KindUnknown
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return types.KindInput
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &dnsErr), errors.As(err, &opErr),
		errors.As(err, &urlErr), errors.As(err, &netErr):
		return types.KindNetwork
	}

	lower := strings.ToLower(msg)
	for _, h := range messageHints {
		if strings.Contains(lower, h.fragment) {
			return h.kind
		}
	}
	return types.KindUnknown
}
