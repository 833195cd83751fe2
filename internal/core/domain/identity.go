package domain

import "strings"

// Identity is the opaque address of a message sender, in user@domain form.
type Identity string

// Parts returns the identity followed by each of its progressively
// shorter domain suffixes. For a@b.c.d that is [a@b.c.d, b.c.d, c.d, d].
// An identity without an @ has no suffixes and yields only itself.
func (id Identity) Parts() []string {
	s := string(id)
	parts := []string{s}

	i := strings.IndexByte(s, '@')
	if i < 0 {
		return parts
	}

	dom := s[i+1:]
	parts = append(parts, dom)
	for {
		j := strings.IndexByte(dom, '.')
		if j < 0 {
			break
		}
		dom = dom[j+1:]
		parts = append(parts, dom)
	}

	return parts
}
