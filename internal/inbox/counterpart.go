package inbox

import "strings"

const userServer = "s.whatsapp.net"

// NormalizeCounterpart maps every spelling of a remote party to one cache key.
// User JIDs and phone numbers collapse to their digits; group, LID and other
// non-user JIDs keep their server with the device suffix removed.
//
//	5531999999999@s.whatsapp.net     -> 5531999999999
//	5531999999999:12@s.whatsapp.net  -> 5531999999999
//	+55 31 99999-9999                -> 5531999999999
//	120363025@g.us                   -> 120363025@g.us
func NormalizeCounterpart(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}

	user, server, hasServer := strings.Cut(id, "@")
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	if !hasServer || server == userServer || server == "c.us" {
		if i := strings.IndexByte(user, '.'); i >= 0 && hasServer {
			user = user[:i]
		}
		return digits(user)
	}
	return user + "@" + server
}

// JIDFor is the inverse of NormalizeCounterpart, used when addressing the
// gateway.
func JIDFor(counterpart string) string {
	if counterpart == "" || strings.Contains(counterpart, "@") {
		return counterpart
	}
	return counterpart + "@" + userServer
}

// IsGroup reports whether a canonical counterpart is a group.
func IsGroup(counterpart string) bool {
	return strings.HasSuffix(counterpart, "@g.us")
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
