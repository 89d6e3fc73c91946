package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"
)

// Script classes relevant to the regulator forms.
type Script int

const (
	ScriptLatin Script = iota
	ScriptCJK
	ScriptThai
)

// DetectScript classifies a text run. CJK wins over Thai when both occur,
// since the CJK font also covers Latin digits used alongside.
func DetectScript(text string) Script {
	script := ScriptLatin
	for _, r := range text {
		switch {
		case isCJK(r):
			return ScriptCJK
		case r >= 0x0E00 && r <= 0x0E7F:
			script = ScriptThai
		}
	}
	return script
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // extension A
		return true
	case r >= 0xF900 && r <= 0xFAFF: // compatibility ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // kana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	case r >= 0x1100 && r <= 0x11FF: // hangul jamo
		return true
	}
	return false
}

// FontSelector picks and installs the embeddable fonts used when filling
// regulator PDFs. Fonts must be embedded, not just named; Helvetica is the
// logged last-resort substitution.
type FontSelector struct {
	cjkPath     string
	thaiPath    string
	installOnce sync.Once
	installErr  error
	log         *logrus.Entry
}

// NewFontSelector locates the font files under fontDir.
func NewFontSelector(fontDir string) *FontSelector {
	return &FontSelector{
		cjkPath:  filepath.Join(fontDir, "NotoSansCJK-Regular.ttf"),
		thaiPath: filepath.Join(fontDir, "Sarabun-Regular.ttf"),
		log:      logrus.WithField("component", "fonts"),
	}
}

// Verify fails fast when the font files are missing; the PDF endpoints
// refuse to serve without them.
func (f *FontSelector) Verify() error {
	for _, path := range []string{f.cjkPath, f.thaiPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("font file missing: %s", path)
		}
	}
	return nil
}

// EnsureInstalled registers the TrueType fonts with the PDF engine once per
// process so filled values embed real glyphs.
func (f *FontSelector) EnsureInstalled() error {
	f.installOnce.Do(func() {
		if err := f.Verify(); err != nil {
			f.installErr = err
			return
		}
		f.installErr = api.InstallFonts([]string{f.cjkPath, f.thaiPath})
	})
	return f.installErr
}

// FontFor returns the embeddable font file covering the text's script. An
// empty path means the Helvetica fallback, which is logged.
func (f *FontSelector) FontFor(text string) (path, name string) {
	switch DetectScript(text) {
	case ScriptCJK:
		if _, err := os.Stat(f.cjkPath); err == nil {
			return f.cjkPath, "NotoSansCJK-Regular"
		}
	case ScriptThai, ScriptLatin:
		if _, err := os.Stat(f.thaiPath); err == nil {
			return f.thaiPath, "Sarabun-Regular"
		}
	}
	f.log.WithField("text_script", DetectScript(text)).
		Warn("no embeddable font covers text, substituting Helvetica")
	return "", "Helvetica"
}
