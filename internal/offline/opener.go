package offline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

var ErrNoOpener = errors.New("no application available to open files")

// Opener hands a local file to the platform's open facility.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// SystemOpener runs the desktop's default handler (xdg-open, open, or start).
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, path string) error {
	name, args := openCommand(runtime.GOOS)
	bin, err := exec.LookPath(name)
	if err != nil {
		return ErrNoOpener
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(bin, append(args, path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	// the viewer outlives us
	go cmd.Wait()
	return nil
}

func openCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}
