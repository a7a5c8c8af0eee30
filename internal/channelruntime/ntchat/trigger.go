package ntchat

import (
	"fmt"
	"strconv"
	"strings"
)

// paintCommand is one parsed image-generation trigger.
type paintCommand struct {
	Kind   string // "generate" | "upscale" | "help"
	Prompt string
	ImgID  string
	Index  int
}

// parsePaintCommand recognizes "<prefix>mj <prompt>" and
// "<prefix>mju <img_id> <index>". It reports ok=false when content is
// not a paint trigger at all, and a non-nil error when it is one but the
// arguments are malformed.
func parsePaintCommand(prefix, content string) (paintCommand, bool, error) {
	content = strings.TrimSpace(content)
	if content == "" || !strings.HasPrefix(content, prefix) {
		return paintCommand{}, false, nil
	}
	word, rest := splitCommand(content)
	switch strings.ToLower(word) {
	case prefix + "mj":
		if rest == "" {
			return paintCommand{Kind: "help"}, true, nil
		}
		return paintCommand{Kind: "generate", Prompt: rest}, true, nil
	case prefix + "mju":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return paintCommand{}, true, fmt.Errorf("%smju needs an image id and an index", prefix)
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil || index < 1 || index > 4 {
			return paintCommand{}, true, fmt.Errorf("image index %q must be between 1 and 4", fields[1])
		}
		return paintCommand{Kind: "upscale", ImgID: fields[0], Index: index}, true, nil
	default:
		return paintCommand{}, false, nil
	}
}

func splitCommand(content string) (word, rest string) {
	parts := strings.SplitN(content, " ", 2)
	word = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}
	return word, rest
}

func paintHelpText(prefix string) string {
	return "image generation commands:\n" +
		fmt.Sprintf("  %smj <prompt>          generate an image\n", prefix) +
		fmt.Sprintf("  %smju <img_id> <1-4>   upscale one image\n", prefix) +
		"example:\n" +
		fmt.Sprintf("  %smj a little cat, white --ar 9:16", prefix)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
