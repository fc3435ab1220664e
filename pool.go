package aeris

import "sync"

// Pool holds the sync.Pools backing per-request Request/Response reuse
// (spec.md §7 "Object pooling"), grounded on the host framework's own
// Request/Response pool.
type Pool struct {
	requestPool  *sync.Pool
	responsePool *sync.Pool
}

// newPool returns a new Pool.
func newPool() *Pool {
	return &Pool{
		requestPool: &sync.Pool{
			New: func() interface{} { return newRequest() },
		},
		responsePool: &sync.Pool{
			New: func() interface{} { return newResponse() },
		},
	}
}

// Request returns a Request from p. A reused instance still holds its
// previous exchange's state until reset is called on it.
func (p *Pool) Request() *Request {
	return p.requestPool.Get().(*Request)
}

// Response returns a Response from p. A reused instance still holds its
// previous state until reset is called on it.
func (p *Pool) Response() *Response {
	return p.responsePool.Get().(*Response)
}

// Put returns x to its pool as it is; it does not reset x.
func (p *Pool) Put(x interface{}) {
	switch v := x.(type) {
	case *Request:
		p.requestPool.Put(v)
	case *Response:
		p.responsePool.Put(v)
	}
}
