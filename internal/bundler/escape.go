// ABOUTME: Escaping of tag-closing sequences inside inlined script and style bodies.
// ABOUTME: Also repairs already-inlined head scripts that contain stray </script sequences.

package bundler

import (
	"bytes"
	"regexp"
)

var (
	scriptCloseRe = regexp.MustCompile(`(?i)</script`)
	styleCloseRe  = regexp.MustCompile(`(?i)</style`)
	commentOpenRe = regexp.MustCompile(`<!--`)
)

// escapeCloser rewrites every "</name" as "<\/name", keeping the original
// case of name. JS and CSS both read "\/" as "/".
func escapeCloser(re *regexp.Regexp, body []byte) []byte {
	return re.ReplaceAllFunc(body, func(m []byte) []byte {
		out := make([]byte, 0, len(m)+1)
		out = append(out, '<', '\\')
		return append(out, m[1:]...)
	})
}

// EscapeScript neutralizes closing-tag sequences in a script body, plus
// "<!--", which would otherwise let a later "<script" swallow the real closer.
func EscapeScript(body []byte) []byte {
	return commentOpenRe.ReplaceAll(escapeCloser(scriptCloseRe, body), []byte(`<\!--`))
}

// EscapeStyle neutralizes closing-tag sequences in a stylesheet.
func EscapeStyle(body []byte) []byte {
	return escapeCloser(styleCloseRe, body)
}

// repairHeadScripts fixes inline scripts in <head> whose bodies contain
// literal "</script" sequences. For each script the genuine closer is the
// last "</script" before the next script opening tag or the end of head;
// every earlier one is escaped. A "<script" only opens the next script when
// nothing but markup separates it from a preceding "</script", so one inside
// a JS string does not split the body. Documents without </head are
// returned as is.
func repairHeadScripts(doc []byte) []byte {
	lower := bytes.ToLower(doc)
	headEnd := bytes.Index(lower, []byte("</head"))
	if headEnd < 0 {
		return doc
	}

	var escapeAt []int
	pos := 0
	for {
		open := nextScriptOpen(lower[:headEnd], pos)
		if open < 0 {
			break
		}
		gt := bytes.IndexByte(lower[open:headEnd], '>')
		if gt < 0 {
			break
		}
		bodyStart := open + gt + 1

		boundary := headEnd
		for cand := nextScriptOpen(lower[:headEnd], bodyStart); cand >= 0; cand = nextScriptOpen(lower[:headEnd], cand+1) {
			if closedBefore(lower[bodyStart:cand]) {
				boundary = cand
				break
			}
		}

		closers := allIndexes(lower[bodyStart:boundary], []byte("</script"))
		for i := 0; i < len(closers)-1; i++ {
			escapeAt = append(escapeAt, bodyStart+closers[i])
		}
		pos = boundary
	}

	if len(escapeAt) == 0 {
		return doc
	}

	out := make([]byte, 0, len(doc)+len(escapeAt))
	last := 0
	for _, at := range escapeAt {
		out = append(out, doc[last:at+1]...) // through '<'
		out = append(out, '\\')
		last = at + 1
	}
	return append(out, doc[last:]...)
}

// closedBefore reports whether seg, the body text up to a candidate opener,
// ends in a "</script ...>" followed only by markup.
func closedBefore(seg []byte) bool {
	last := bytes.LastIndex(seg, []byte("</script"))
	if last < 0 {
		return false
	}
	gt := bytes.IndexByte(seg[last:], '>')
	if gt < 0 {
		return false
	}
	return onlyMarkup(seg[last+gt+1:])
}

// onlyMarkup reports whether lowercased seg holds nothing but whitespace,
// comments and tags. title and style elements are skipped whole.
func onlyMarkup(seg []byte) bool {
next:
	for {
		seg = bytes.TrimLeft(seg, " \t\n\r\f")
		if len(seg) == 0 {
			return true
		}
		if seg[0] != '<' || len(seg) < 2 {
			return false
		}
		if bytes.HasPrefix(seg, []byte("<!--")) {
			end := bytes.Index(seg, []byte("-->"))
			if end < 0 {
				return false
			}
			seg = seg[end+3:]
			continue
		}
		for _, name := range []string{"title", "style"} {
			if bytes.HasPrefix(seg, []byte("<"+name)) {
				end := bytes.Index(seg, []byte("</"+name))
				if end < 0 {
					return false
				}
				gt := bytes.IndexByte(seg[end:], '>')
				if gt < 0 {
					return false
				}
				seg = seg[end+gt+1:]
				continue next
			}
		}
		c := seg[1]
		if !(c >= 'a' && c <= 'z') && c != '/' && c != '!' {
			return false
		}
		gt := bytes.IndexByte(seg, '>')
		if gt < 0 {
			return false
		}
		seg = seg[gt+1:]
	}
}

// nextScriptOpen finds the next "<script" opening tag at or after from.
func nextScriptOpen(lower []byte, from int) int {
	for from < len(lower) {
		i := bytes.Index(lower[from:], []byte("<script"))
		if i < 0 {
			return -1
		}
		at := from + i
		end := at + len("<script")
		if end >= len(lower) {
			return -1
		}
		switch lower[end] {
		case ' ', '\t', '\n', '\r', '\f', '>', '/':
			return at
		}
		from = end
	}
	return -1
}

func allIndexes(s, sep []byte) []int {
	var out []int
	off := 0
	for {
		i := bytes.Index(s[off:], sep)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sep)
	}
}
