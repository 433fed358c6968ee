package proxy

// Action changes the backend set of one listen address. It is either Add or
// RemoveAsk, and doubles as a TCP proxy mailbox message.
type Action interface {
	Msg
	ListenAddr() string
	BackendAddr() string
}

// Add asks the proxy on Listen to start using Backend
type Add struct {
	Listen  string
	Backend Backend
}

// RemoveAsk asks the proxy on Listen to stop using the backend at Addr.
// Connections already established stay open.
type RemoveAsk struct {
	Listen string
	Addr   string
}

func (Add) isMsg()       {}
func (RemoveAsk) isMsg() {}

func (a Add) ListenAddr() string        { return a.Listen }
func (a Add) BackendAddr() string       { return a.Backend.Addr }
func (r RemoveAsk) ListenAddr() string  { return r.Listen }
func (r RemoveAsk) BackendAddr() string { return r.Addr }

// Think returns every action needed to turn the current world into the
// expected one. Replacements come first: an address now served by another
// container gets RemoveAsk then Add, so the proxy drops the stale health
// targets. Then come plain adds, then removals. Each group is ordered by
// listen address and backend address.
func Think(worlds Worlds) []Action {
	var replaces, adds, removes []Action

	for _, listen := range worlds.Expected.Listens() {
		cur := worlds.Current[listen]
		for _, b := range worlds.Expected[listen].Sorted() {
			var (
				existing Backend
				ok       bool
			)
			if cur != nil {
				existing, ok = cur.Backends[b.Addr]
			}
			switch {
			case !ok:
				adds = append(adds, Add{Listen: listen, Backend: b})
			case existing.ContainerID != b.ContainerID:
				replaces = append(replaces, RemoveAsk{Listen: listen, Addr: b.Addr}, Add{Listen: listen, Backend: b})
			}
		}
	}

	for _, listen := range worlds.Current.Listens() {
		exp := worlds.Expected[listen]
		for _, b := range worlds.Current[listen].Sorted() {
			if exp != nil {
				if _, ok := exp.Backends[b.Addr]; ok {
					continue
				}
			}
			removes = append(removes, RemoveAsk{Listen: listen, Addr: b.Addr})
		}
	}

	actions := make([]Action, 0, len(replaces)+len(adds)+len(removes))
	actions = append(actions, replaces...)
	actions = append(actions, adds...)
	return append(actions, removes...)
}
