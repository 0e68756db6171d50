package dispatch

import "strings"

// Recipients is an ordered set of addresses. Blank entries and repeats
// (case-insensitive) are dropped; the first spelling wins.
type Recipients []string

func NewRecipients(addrs ...string) Recipients {
	var r Recipients
	return r.Add(addrs...)
}

func (r Recipients) Add(addrs ...string) Recipients {
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || r.Contains(a) {
			continue
		}
		r = append(r, a)
	}
	return r
}

func (r Recipients) Contains(addr string) bool {
	addr = strings.TrimSpace(addr)
	for _, existing := range r {
		if strings.EqualFold(existing, addr) {
			return true
		}
	}
	return false
}

func (r Recipients) String() string {
	return strings.Join(r, ", ")
}
