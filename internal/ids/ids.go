package ids

import "github.com/segmentio/ksuid"

// New returns a KSUID string. Lexical order follows creation time only to
// the second and is random within one, but it is a total order, which is
// all the tie-breaker for rows sharing a timestamp needs.
func New() string {
	return ksuid.New().String()
}
