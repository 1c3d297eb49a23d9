package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

type helpCLI struct {
	Input string `arg:"" name:"input" help:"Input file" optional:""`

	Codec   string `help:"Output codec" placeholder:"codec" group:"encode" default:"h264"`
	GOP     int    `name:"gop" help:"Keyframe interval" group:"encode"`
	Size    string `help:"Output size" placeholder:"WxH" group:"convert"`
	Verbose bool   `short:"v" help:"Chatty output"`
	Secret  bool   `hidden:"" help:"Not listed"`
}

func renderHelp(t *testing.T) string {
	t.Helper()
	var out bytes.Buffer
	var cli helpCLI
	parser, err := kong.New(&cli,
		kong.Name("framecast"),
		kong.Description("Encode frames."),
		kong.Writers(&out, &out),
		kong.Exit(func(int) {}),
		kong.ExplicitGroups([]kong.Group{
			{Key: "encode", Title: "Encoding"},
			{Key: "convert", Title: "Conversion"},
		}),
		kong.Help(StyledHelpPrinter("framecast in.mp4 out.h264 100")),
	)
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	_, _ = parser.Parse([]string{"--help"})
	return out.String()
}

func TestStyledHelpPrinter_Groups(t *testing.T) {
	help := renderHelp(t)

	for _, want := range []string{
		"Encode frames.",
		"framecast [<input>] [flags]",
		"General:",
		"Encoding:",
		"Conversion:",
		"--codec=CODEC",
		"(default: h264)",
		"--size=WXH",
		"-v, --verbose",
		"Examples:",
		"framecast in.mp4 out.h264 100",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}

	if strings.Contains(help, "--secret") {
		t.Errorf("hidden flag listed:\n%s", help)
	}

	// Groups follow declaration order, general flags come first
	general := strings.Index(help, "General:")
	encoding := strings.Index(help, "Encoding:")
	conversion := strings.Index(help, "Conversion:")
	if !(general < encoding && encoding < conversion) {
		t.Errorf("unexpected group order: general=%d encoding=%d conversion=%d", general, encoding, conversion)
	}
	if gop := strings.Index(help, "--gop"); gop < encoding || gop > conversion {
		t.Errorf("--gop should be listed under Encoding:\n%s", help)
	}
}
