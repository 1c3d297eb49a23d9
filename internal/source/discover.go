package source

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ErrToolNotFound is returned when ffmpeg or ffprobe cannot be located
var ErrToolNotFound = errors.New("tool not found")

// FindTool locates an ffmpeg suite binary. Priority: 1) custom path,
// 2) environment variable (FFMPEG_PATH / FFPROBE_PATH), 3) PATH, 4) common
// install locations.
func FindTool(name, custom string) (string, error) {
	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: %s custom path %s not found", ErrToolNotFound, name, custom)
	}

	envVar := envVarFor(name)
	if envPath := os.Getenv(envVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: %s %s not found", ErrToolNotFound, envVar, envPath)
	}

	execName := name
	if runtime.GOOS == "windows" {
		execName = name + ".exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	for _, dir := range commonDirs() {
		p := dir + string(os.PathSeparator) + execName
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

func envVarFor(name string) string {
	switch name {
	case "ffprobe":
		return "FFPROBE_PATH"
	default:
		return "FFMPEG_PATH"
	}
}

func commonDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{`C:\ffmpeg\bin`, `C:\Program Files\ffmpeg\bin`}
	case "darwin":
		return []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}
	default:
		return []string{"/usr/bin", "/usr/local/bin", "/snap/bin"}
	}
}
