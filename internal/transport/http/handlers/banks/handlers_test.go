package bankshandler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/domain/banks"
	"wageadvance/internal/transport/http/handlers/handlertest"
)

type fakeService struct {
	items []banks.Bank
	err   error
}

func (f fakeService) List(context.Context) ([]banks.Bank, error) {
	return f.items, f.err
}

func TestListIsPublic(t *testing.T) {
	router := handlertest.Router(NewHandler(fakeService{items: []banks.Bank{{Code: "0102", Name: "Banco de Venezuela"}}}))
	rec := handlertest.Do(t, router, http.MethodGet, "/banks", auth.UserContext{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"code":"0102","name":"Banco de Venezuela"}]`, string(handlertest.Decode(t, rec).Data))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
}

func TestListFailure(t *testing.T) {
	router := handlertest.Router(NewHandler(fakeService{err: errors.New("db down")}))
	rec := handlertest.Do(t, router, http.MethodGet, "/banks", auth.UserContext{}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
