package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jipraks/kasirgratisan/internal/backup"
	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/service"
)

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "create backup file", cause)

	assert.Equal(t, "create backup file: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("export: %w", err)))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "usage", NewExitError(ExitCommandError, "usage").Error())
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&domain.ValidationError{Field: "quantity", Reason: "x", Err: domain.ErrInsufficientStock}, "E_STOCK"},
		{&domain.ValidationError{Field: "paymentAmount", Reason: "x", Err: domain.ErrInsufficientPayment}, "E_PAYMENT"},
		{domain.Invalid("name", "must not be empty"), "E_VALIDATION"},
		{&backup.FormatError{Reason: "not JSON"}, "E_BACKUP_FORMAT"},
		{&backup.FatalRecoveryError{Err: errors.New("write"), RestoreErr: errors.New("restore")}, "E_RECOVERY"},
		{&service.AbortError{Op: "commit sale", Step: "add transaction", Err: errors.New("io")}, "E_ABORTED"},
		{NewExitError(ExitCommandError, "bad flag"), "E_COMMAND"},
		{errors.New("boom"), "E_INTERNAL"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorCode(tc.err), "%v", tc.err)
	}
}

type greeting string

func (g greeting) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "halo %s\n", string(g))
	return err
}

func TestOutputFormatterSuccess(t *testing.T) {
	var buf bytes.Buffer
	text := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, text.Success(greeting("toko")))
	assert.Equal(t, "halo toko\n", buf.String())

	buf.Reset()
	require.NoError(t, text.Success(42))
	assert.Equal(t, "42\n", buf.String())

	buf.Reset()
	js := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, js.Success(map[string]int{"n": 1}))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatterError(t *testing.T) {
	var buf bytes.Buffer
	text := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
	require.NoError(t, text.Error("E_STOCK", "quantity: only 3 left", "product 10"))
	assert.Equal(t, "Error [E_STOCK]: quantity: only 3 left\nDetails: product 10\n", buf.String())

	buf.Reset()
	js := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, js.Error("E_STOCK", "quantity: only 3 left", nil))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_STOCK", resp.Error.Code)
}

func TestVerboseLogUsesErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("wrote %d rows", 3)

	assert.Empty(t, out.String())
	assert.Equal(t, "wrote 3 rows\n", errOut.String())
}

func TestParseItemAndDiscount(t *testing.T) {
	line, err := parseItem("2:3:10%")
	require.NoError(t, err)
	assert.Equal(t, service.LineRequest{ProductID: 2, Quantity: 3, Discount: domain.Percentage(10)}, line)

	line, err = parseItem("7")
	require.NoError(t, err)
	assert.Equal(t, service.LineRequest{ProductID: 7, Quantity: 1}, line)

	for _, bad := range []string{"", "x:1", "1:two", "1:1:1:1", "1:1:150%"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}

	d, err := parseDiscount("5000")
	require.NoError(t, err)
	assert.Equal(t, domain.Nominal(5000), d)

	_, err = parseDiscount("-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, raw := range []string{"NaN", "inf", "-Inf", "NaN%", "+inf%"} {
		_, err = parseDiscount(raw)
		assert.ErrorIs(t, err, domain.ErrValidation, raw)
	}
	_, err = parseItem("1:1:inf")
	assert.Error(t, err)
}
