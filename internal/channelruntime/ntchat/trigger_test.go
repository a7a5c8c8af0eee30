package ntchat

import "testing"

func TestParsePaintCommand(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantOK  bool
		wantErr bool
		want    paintCommand
	}{
		{name: "generate", content: "$mj a little cat", wantOK: true, want: paintCommand{Kind: "generate", Prompt: "a little cat"}},
		{name: "generate upper", content: "$MJ a cat", wantOK: true, want: paintCommand{Kind: "generate", Prompt: "a cat"}},
		{name: "bare mj is help", content: "$mj", wantOK: true, want: paintCommand{Kind: "help"}},
		{name: "upscale", content: "$mju 1105592 2", wantOK: true, want: paintCommand{Kind: "upscale", ImgID: "1105592", Index: 2}},
		{name: "upscale missing index", content: "$mju 1105592", wantOK: true, wantErr: true},
		{name: "upscale index too high", content: "$mju 1105592 5", wantOK: true, wantErr: true},
		{name: "upscale index zero", content: "$mju 1105592 0", wantOK: true, wantErr: true},
		{name: "upscale index not a number", content: "$mju 1105592 two", wantOK: true, wantErr: true},
		{name: "plain text", content: "hello bot", wantOK: false},
		{name: "other command", content: "$weather tokyo", wantOK: false},
		{name: "empty", content: "   ", wantOK: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok, err := parsePaintCommand("$", c.content)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, c.wantErr)
			}
			if !c.wantErr && ok && got != c.want {
				t.Fatalf("cmd = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestParsePaintCommandCustomPrefix(t *testing.T) {
	got, ok, err := parsePaintCommand("#", "#mj a cat")
	if !ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Kind != "generate" || got.Prompt != "a cat" {
		t.Fatalf("cmd = %+v", got)
	}
	if _, ok, _ := parsePaintCommand("#", "$mj a cat"); ok {
		t.Fatalf("wrong prefix must not match")
	}
}
