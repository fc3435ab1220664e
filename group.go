package aeris

// Mount registers a child Application under a path prefix. On dispatch the
// parent never rewrites Path or RawPath; it only extends RootPath by the
// mount's prefix before handing the request to the child (spec.md §4.1
// "Mounts", invariant 8), so the child can compute its own
// application-relative path by stripping RootPath from RawPath.
type Mount struct {
	Prefix string
	App    *Application
}

// Handler adapts the mount into a route Handler suitable for registration
// on the parent's wildcard route at Prefix+"/*".
func (m *Mount) Handler() Handler {
	return func(req *Request) (*Response, error) {
		req.RootPath = joinMountPrefix(req.RootPath, m.Prefix)
		return m.App.HandleRequest(req)
	}
}
