package core_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	e := core.NewAppError(core.ErrorCodeInternal, "save failed", cause)
	require.Equal(t, "save failed: boom", e.Error())
	require.ErrorIs(t, e, cause)

	e = core.NewAppError(core.ErrorCodeInternal, "save failed", nil)
	require.Equal(t, "save failed", e.Error())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	e := core.NewAppError(core.ErrorCodeValidation, "bad input", nil)
	require.ErrorIs(t, e, &core.AppError{Code: core.ErrorCodeValidation})
	require.NotErrorIs(t, e, &core.AppError{Code: core.ErrorCodeInternal})
	require.NotErrorIs(t, e, errors.New("bad input"))
}

func TestAppError_HTTPStatus(t *testing.T) {
	t.Parallel()

	cases := map[core.ErrorCode]int{
		core.ErrorCodeInternal:    http.StatusInternalServerError,
		core.ErrorCodeValidation:  http.StatusBadRequest,
		core.ErrorCodeNotFound:    http.StatusNotFound,
		core.ErrorCodeUnavailable: http.StatusServiceUnavailable,
		core.ErrorCodeTimeout:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		e := core.NewAppError(code, "x", nil)
		require.Equal(t, want, e.HTTPStatus())
	}

	var nilErr *core.AppError
	require.Equal(t, http.StatusInternalServerError, nilErr.HTTPStatus())
}

func TestAppError_PublicMessage(t *testing.T) {
	t.Parallel()

	safe := core.NewValidationError("id must be numeric", nil, "parse")
	require.Equal(t, "id must be numeric", safe.PublicMessage())

	hidden := core.NewInternalError("db handle lost", nil, "save")
	require.Equal(t, "internal error", hidden.PublicMessage())

	var nilErr *core.AppError
	require.Equal(t, "internal error", nilErr.PublicMessage())
}

func TestAppError_CloneIsDeep(t *testing.T) {
	t.Parallel()

	e := core.NewAppErrorBuilder(core.ErrorCodeInternal).
		Message("x").
		Meta("k", "v").
		Build()

	c := e.Clone()
	c.Meta["k"] = "changed"
	require.Equal(t, "v", e.Meta["k"], "clone must not share meta")
}

func TestAppError_WithOperAndMeta(t *testing.T) {
	t.Parallel()

	e := core.NewAppError(core.ErrorCodeInternal, "x", nil)

	withOp := e.WithOper("fetch.run")
	require.Equal(t, "fetch.run", withOp.Operation)
	require.Empty(t, e.Operation, "WithOper must not mutate the receiver")

	withMeta := e.WithMeta("id", "abc")
	require.Equal(t, "abc", withMeta.Meta["id"])
	require.Nil(t, e.Meta)
}

func TestAsAppError(t *testing.T) {
	t.Parallel()

	e := core.NewInternalError("x", nil, "op")
	wrapped := fmt.Errorf("outer: %w", e)

	got, ok := core.AsAppError(wrapped)
	require.True(t, ok)
	require.Same(t, e, got)

	_, ok = core.AsAppError(errors.New("plain"))
	require.False(t, ok)
	_, ok = core.AsAppError(nil)
	require.False(t, ok)
}

func TestBuilder_ReuseDoesNotLeakMeta(t *testing.T) {
	t.Parallel()

	b := core.NewAppErrorBuilder(core.ErrorCodeInternal).Message("x")
	first := b.Meta("a", "1").Build()
	second := b.Build()

	require.Equal(t, "1", first.Meta["a"])
	require.Nil(t, second.Meta)
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	fd := core.NewFeatureDisabledError("ytm", "bot.handle")
	require.Equal(t, core.ErrorCodeUnavailable, fd.Code)
	require.True(t, fd.SafeToShow)
	require.Equal(t, "ytm", fd.Meta["feature"])

	to := core.NewFetchTimeoutError("abc", 3, "supervisor.run")
	require.Equal(t, core.ErrorCodeTimeout, to.Code)
	require.Equal(t, "abc", to.Meta["id"])
	require.Equal(t, "3", to.Meta["attempts"])
}
