package password

// HistoryDepth is how many previous password hashes are retained.
const HistoryDepth = 3

// Verifier is the comparison primitive history checks run through.
type Verifier interface {
	Verify(secret, encoded string) (bool, error)
}

// AppendHistory appends hash and keeps only the most recent keep entries,
// oldest first. The input slice is not modified.
func AppendHistory(history []string, hash string, keep int) []string {
	if keep <= 0 {
		keep = HistoryDepth
	}
	out := make([]string, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, hash)
	if len(out) > keep {
		out = out[len(out)-keep:]
	}
	return out
}

// Reused reports whether secret matches any hash in history. Every entry is
// checked with the hasher's own constant-time comparison; the loop does not
// exit early so the work done is independent of which entry matched.
func Reused(v Verifier, history []string, secret string) (bool, error) {
	reused := false
	var firstErr error
	for _, encoded := range history {
		ok, err := v.Verify(secret, encoded)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			reused = true
		}
	}
	if reused {
		return true, nil
	}
	return false, firstErr
}
