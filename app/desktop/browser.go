package desktop

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// OpenURL hands an http(s) URL to the desktop's default browser.
func OpenURL(raw string) error {
	name, args, err := browserCommand(runtime.GOOS, raw)
	if err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("browser: %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func browserCommand(goos, raw string) (string, []string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("browser: parse %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("browser: refusing to open %q", raw)
	}
	s := u.String()
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", s}, nil
	case "darwin":
		return "open", []string{s}, nil
	default:
		return "xdg-open", []string{s}, nil
	}
}
