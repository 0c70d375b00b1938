package tui

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

var errNoClipboard = errors.New("no clipboard command available")

const clipboardTimeout = 5 * time.Second

// clipboardTools are tried in order when no command is configured.
var clipboardTools = []struct {
	bin  string
	args []string
}{
	{"wl-copy", nil},
	{"xclip", []string{"-selection", "clipboard"}},
	{"xsel", []string{"--clipboard", "--input"}},
	{"pbcopy", nil},
}

// copyText pipes text into the clipboard command.
func copyText(text, configured string) error {
	argv := strings.Fields(detectClipboardCommand(configured))
	if len(argv) == 0 {
		return errNoClipboard
	}

	ctx, cancel := context.WithTimeout(context.Background(), clipboardTimeout)
	defer cancel()

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = strings.NewReader(text)
	return c.Run()
}

func detectClipboardCommand(configured string) string {
	if configured != "" {
		return configured
	}
	for _, tool := range clipboardTools {
		if _, err := exec.LookPath(tool.bin); err == nil {
			return strings.Join(append([]string{tool.bin}, tool.args...), " ")
		}
	}
	return ""
}
