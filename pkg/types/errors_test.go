// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionError(t *testing.T) {
	err := NewError(KindNetwork, "cannot reach endpoint", io.ErrUnexpectedEOF)

	assert.Equal(t, "NetworkError: cannot reach endpoint", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, NewError(KindNetwork, "", nil))
	assert.NotErrorIs(t, err, NewError(KindInput, "", nil))

	wrapped := fmt.Errorf("converting: %w", err)
	assert.Equal(t, KindNetwork, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindInput, "opening %s: %w", "a.pdf", io.EOF)
	assert.Equal(t, "opening a.pdf: EOF", err.Message)
	assert.Equal(t, io.EOF, err.Cause)

	plain := Errorf(KindUnsupportedFormat, "no engine for %s", ".xyz")
	assert.Nil(t, plain.Cause)
}

func TestErrorKind_Valid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, ErrorKind("Bogus").Valid())
}

func TestSourceAndOutcome(t *testing.T) {
	assert.Equal(t, "report.pdf", FileSource("/docs/report.pdf").Describe())
	assert.Equal(t, "stdin", StreamSource(strings.NewReader(""), "stdin").Describe())
	assert.Equal(t, "stream", StreamSource(strings.NewReader(""), "").Describe())
	assert.Equal(t, "(none)", Source{}.Describe())
	assert.True(t, StreamSource(strings.NewReader(""), "").IsStream())
	assert.False(t, FileSource("a.pdf").IsStream())

	ok := Success("# x", "native")
	assert.True(t, ok.OK())
	assert.Empty(t, ok.Kind())

	bad := Failure(KindCorruptInput, "bad")
	assert.False(t, bad.OK())
	assert.Equal(t, KindCorruptInput, bad.Kind())

	assert.False(t, StateRunning.IsTerminal())
	assert.True(t, StateDelivered.IsTerminal())
	assert.True(t, StateAbandoned.IsTerminal())
}
