package kiln

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiln-dev/kiln/kerrors"
)

func TestRunChainNoMiddlewareCallsHandler(t *testing.T) {
	var called bool
	runChain(nil, func(req *Request, resp *Response) { called = true }, nil, nil, func(error) {
		t.Fatal("onError should not run")
	})
	assert.True(t, called)
}

func TestRunChainMiddlewareCanShortCircuit(t *testing.T) {
	var handlerRan bool
	mw := MiddlewareFunc(func(req *Request, resp *Response, next Next) {
		// deliberately never call next()
	})
	runChain([]MiddlewareFunc{mw}, func(req *Request, resp *Response) { handlerRan = true }, nil, nil, func(error) {
		t.Fatal("onError should not run")
	})
	assert.False(t, handlerRan)
}

func TestRunChainRecoversPanicWithError(t *testing.T) {
	sentinel := errors.New("boom")
	var caught error
	runChain(nil, func(req *Request, resp *Response) { panic(sentinel) }, nil, nil, func(err error) {
		caught = err
	})
	assert.Equal(t, sentinel, caught)
}

func TestRunChainWrapsNonErrorPanic(t *testing.T) {
	var caught error
	runChain(nil, func(req *Request, resp *Response) { panic("not an error") }, nil, nil, func(err error) {
		caught = err
	})
	var kerr *kerrors.Error
	assert.ErrorAs(t, caught, &kerr)
	assert.Equal(t, kerrors.Unexpected, kerr.Kind)
}
