package sync

import "strings"

// SenderPolicy decides which senders the pipeline ingests. It is rebuilt at
// the start of every pass so admin and domain changes apply without restart.
type SenderPolicy struct {
	allowed        map[string]struct{}
	domainSuffixes []string
}

// NewSenderPolicy builds a policy from the active admin addresses, the
// granted super account and the allowed domain suffixes. All comparisons are
// case-insensitive.
func NewSenderPolicy(adminEmails []string, superEmail string, domains []string) *SenderPolicy {
	p := &SenderPolicy{allowed: make(map[string]struct{}, len(adminEmails)+1)}
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.allowed[e] = struct{}{}
		}
	}
	if superEmail = strings.ToLower(strings.TrimSpace(superEmail)); superEmail != "" {
		p.allowed[superEmail] = struct{}{}
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "@")
		if d != "" {
			p.domainSuffixes = append(p.domainSuffixes, "@"+d)
		}
	}
	return p
}

// Allows reports whether mail from the given address should be ingested. An
// empty or unparseable sender is never allowed.
func (p *SenderPolicy) Allows(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if _, ok := p.allowed[email]; ok {
		return true
	}
	for _, suffix := range p.domainSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	return false
}
