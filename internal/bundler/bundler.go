// ABOUTME: Inlines local script and stylesheet references into a single widget HTML document.
// ABOUTME: Walks the document with the x/net/html tokenizer and re-emits raw tokens unchanged otherwise.

package bundler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ErrMissingAsset is matched by every *MissingAssetError.
var ErrMissingAsset = errors.New("missing asset")

// MissingAssetError reports a local reference that could not be read.
type MissingAssetError struct {
	Ref  string // as written in the document
	Path string // resolved path inside the build output
	Err  error
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing asset %q (resolved %q): %v", e.Ref, e.Path, e.Err)
}

func (e *MissingAssetError) Unwrap() error { return e.Err }

func (e *MissingAssetError) Is(target error) bool { return target == ErrMissingAsset }

// Result is a bundled document and the files it consumed.
type Result struct {
	HTML    []byte
	Inlined []string
}

// Bundle inlines every local <script src> and <link rel="stylesheet"> in doc.
// References are resolved inside fsys relative to dir; a leading "/" makes
// them relative to the root of fsys. Remote and data: references are left
// alone. A document without local references and without stray closers in
// head scripts comes back byte-for-byte.
func Bundle(doc []byte, fsys fs.FS, dir string) (*Result, error) {
	doc = repairHeadScripts(doc)

	var (
		out       bytes.Buffer
		inlined   []string
		seen      = make(map[string]bool)
		skipBody  bool
		tokenizer = html.NewTokenizer(bytes.NewReader(doc))
	)
	out.Grow(len(doc))

	record := func(p string) {
		if !seen[p] {
			seen[p] = true
			inlined = append(inlined, p)
		}
	}

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if err := tokenizer.Err(); err != io.EOF {
				return nil, fmt.Errorf("tokenize: %w", err)
			}
			out.Write(tokenizer.Raw())
			break
		}

		// Raw must be copied before Token, which lowercases names in place.
		raw := append([]byte(nil), tokenizer.Raw()...)

		if skipBody {
			switch tt {
			case html.TextToken:
				continue
			case html.EndTagToken:
				if tok := tokenizer.Token(); tok.Data == "script" {
					skipBody = false
					continue
				}
			}
			skipBody = false
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		tok := tokenizer.Token()
		switch tok.Data {
		case "script":
			src, ok := attr(tok, "src")
			if !ok || !isLocal(src) {
				break
			}
			p, body, err := readAsset(fsys, dir, src)
			if err != nil {
				return nil, err
			}
			writeInlineScript(&out, tok, body)
			record(p)
			skipBody = true
			continue

		case "link":
			href, ok := attr(tok, "href")
			if !ok || !isStylesheet(tok) || !isLocal(href) {
				break
			}
			p, body, err := readAsset(fsys, dir, href)
			if err != nil {
				return nil, err
			}
			writeInlineStyle(&out, tok, body)
			record(p)
			continue
		}
		out.Write(raw)
	}

	return &Result{HTML: out.Bytes(), Inlined: inlined}, nil
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func isStylesheet(tok html.Token) bool {
	rel, _ := attr(tok, "rel")
	for _, f := range strings.Fields(strings.ToLower(rel)) {
		if f == "stylesheet" {
			return true
		}
	}
	return false
}

func isLocal(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "#") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == ""
}

// resolve maps a reference to a path inside fsys.
func resolve(dir, ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	if strings.HasPrefix(ref, "/") {
		return path.Clean(strings.TrimPrefix(ref, "/"))
	}
	return path.Join(dir, ref)
}

func readAsset(fsys fs.FS, dir, ref string) (string, []byte, error) {
	p := resolve(dir, ref)
	if !fs.ValidPath(p) {
		return p, nil, &MissingAssetError{Ref: ref, Path: p, Err: fs.ErrInvalid}
	}
	body, err := fs.ReadFile(fsys, p)
	if err != nil {
		return p, nil, &MissingAssetError{Ref: ref, Path: p, Err: err}
	}
	return p, body, nil
}

// dropped attributes only apply to external references.
var dropped = map[string]bool{
	"src": true, "async": true, "defer": true, "integrity": true, "crossorigin": true,
	"href": true, "rel": true, "as": true, "referrerpolicy": true,
}

func writeAttrs(out *bytes.Buffer, tok html.Token) {
	for _, a := range tok.Attr {
		if dropped[a.Key] || (tok.Data == "link" && a.Key == "type") {
			continue
		}
		out.WriteByte(' ')
		out.WriteString(a.Key)
		if a.Val != "" {
			out.WriteString(`="`)
			out.WriteString(html.EscapeString(a.Val))
			out.WriteByte('"')
		}
	}
}

func writeInlineScript(out *bytes.Buffer, tok html.Token, body []byte) {
	out.WriteString("<script")
	writeAttrs(out, tok)
	out.WriteByte('>')
	out.Write(EscapeScript(body))
	out.WriteString("</script>")
}

func writeInlineStyle(out *bytes.Buffer, tok html.Token, body []byte) {
	out.WriteString("<style")
	writeAttrs(out, tok)
	out.WriteByte('>')
	out.Write(EscapeStyle(body))
	out.WriteString("</style>")
}
