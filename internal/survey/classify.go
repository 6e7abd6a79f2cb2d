package survey

import "strings"

// Classification is the outcome of reading a scheduler reply.
type Classification struct {
	Status        Status
	Response      string
	RequestNumber string
}

// matcher inspects one token of the reply. ok=false means "try the next matcher".
type matcher func(token, raw string) (c Classification, ok bool)

// Order matters: the first matcher that fires decides the token's result.
var matchers = []matcher{
	matchUnauthorized,
	matchTimeWindow,
	matchPair(":", false),
	matchPair("=", true),
	matchUnrecognized,
}

func matchUnauthorized(token, _ string) (Classification, bool) {
	if strings.Contains(token, "Unauthorized") {
		return Classification{Status: StatusError, Response: token}, true
	}
	return Classification{}, false
}

// matchTimeWindow looks at the whole reply, not just the token.
func matchTimeWindow(token, raw string) (Classification, bool) {
	if strings.Contains(raw, "time window") {
		return Classification{Status: StatusError, Response: token}, true
	}
	return Classification{}, false
}

// matchPair accepts tokens that split on sep into exactly two parts.
func matchPair(sep string, requestNumber bool) matcher {
	return func(token, _ string) (Classification, bool) {
		parts := strings.Split(token, sep)
		if len(parts) != 2 {
			return Classification{}, false
		}
		c := Classification{Status: StatusOK, Response: parts[0] + " = " + parts[1]}
		if requestNumber {
			c.RequestNumber = parts[1]
		}
		return c, true
	}
}

func matchUnrecognized(_, raw string) (Classification, bool) {
	return Classification{Status: StatusWarning, Response: raw}, true
}

// Classify maps a free-text scheduler reply to a status.
//
// Braces and double quotes are stripped and the rest is split on commas.
// Every token is classified and overwrites the previous result, so the last
// token decides, even when it downgrades an earlier OK to WARNING. A request
// number seen on any token is kept.
func Classify(raw string) Classification {
	cleaned := strings.NewReplacer("{", "", "}", "", `"`, "").Replace(raw)

	var out Classification
	for _, token := range strings.Split(cleaned, ",") {
		for _, m := range matchers {
			c, ok := m(token, raw)
			if !ok {
				continue
			}
			reqNum := out.RequestNumber
			out = c
			if out.RequestNumber == "" {
				out.RequestNumber = reqNum
			}
			break
		}
	}
	return out
}
