package classify

import "testing"

func TestClassifyIntents(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		text string
		want Intent
	}{
		{"rename name is", "@moji name is Biscuit", Intent{Kind: KindRename, NewName: "Biscuit"}},
		{"rename call me", "@moji call me Captain", Intent{Kind: KindRename, NewName: "Captain"}},
		{"rename my name is", "hey @moji my name is Sam", Intent{Kind: KindRename, NewName: "Sam"}},
		{"status", "@moji status", Intent{Kind: KindStatus}},
		{"status how are you", "@moji how are you", Intent{Kind: KindStatus}},
		{"status info", "@MOJI INFO", Intent{Kind: KindStatus}},
		{"social share update", "@moji share update", Intent{Kind: KindSocialShare}},
		{"social post to twitter", "@moji post to twitter", Intent{Kind: KindSocialShare}},
		{"interaction with object", "@moji talk: what's up", Intent{Kind: KindInteraction, UserMessage: "what's up"}},
		{"interaction trailing text", "@moji tell me about yourself", Intent{Kind: KindInteraction, UserMessage: "tell me about yourself"}},
		{"reaction sticker", "@moji send sticker", Intent{Kind: KindReactionSticker}},
		{"sticker with style", "@moji sticker: cute cat", Intent{Kind: KindSticker, Prompt: "cute cat", Style: "cute"}},
		{"sticker style funny", "@moji make a sticker of a funny dog", Intent{Kind: KindSticker, Prompt: "a funny dog", Style: "funny"}},
		{"sticker default style", "@moji generate sticker: a robot", Intent{Kind: KindSticker, Prompt: "a robot", Style: "cute"}},
		{"meme about", "@moji share a meme about finals stress", Intent{Kind: KindMeme, Topic: "finals stress"}},
		{"meme me", "@moji meme me: mondays", Intent{Kind: KindMeme, Topic: "mondays"}},
		{"meme bare prefix", "moji meme: deadlines", Intent{Kind: KindMeme, Topic: "deadlines"}},
		{"plain", "see you at 8", Intent{Kind: KindPlain, Text: "see you at 8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Kind != tt.want.Kind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.want.Kind)
			}
			if got.NewName != tt.want.NewName {
				t.Errorf("NewName = %q, want %q", got.NewName, tt.want.NewName)
			}
			if got.UserMessage != tt.want.UserMessage {
				t.Errorf("UserMessage = %q, want %q", got.UserMessage, tt.want.UserMessage)
			}
			if got.Prompt != tt.want.Prompt {
				t.Errorf("Prompt = %q, want %q", got.Prompt, tt.want.Prompt)
			}
			if got.Style != tt.want.Style {
				t.Errorf("Style = %q, want %q", got.Style, tt.want.Style)
			}
			if got.Topic != tt.want.Topic {
				t.Errorf("Topic = %q, want %q", got.Topic, tt.want.Topic)
			}
			if got.Text != tt.want.Text {
				t.Errorf("Text = %q, want %q", got.Text, tt.want.Text)
			}
		})
	}
}

// TestPriorityOrder verifies overlapping matches resolve by rule priority,
// not by position in the text.
func TestPriorityOrder(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		text string
		want Kind
	}{
		{"sticker beats meme", "@moji sticker: @moji meme me: both", KindSticker},
		{"sticker beats meme reversed order", "@moji meme me: x @moji sticker: y", KindSticker},
		{"rename beats everything", "@moji call me @moji sticker: boss", KindRename},
		{"status beats sticker", "@moji info @moji sticker: cat", KindStatus},
		{"reaction beats sticker generation", "@moji send sticker", KindReactionSticker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.text); got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestStyleVocabulary(t *testing.T) {
	c := New()

	for _, style := range []string{"cute", "funny", "sad", "excited"} {
		got := c.Classify("@moji sticker: a very " + style + " otter")
		if got.Style != style {
			t.Errorf("style %q: got %q", style, got.Style)
		}
	}

	// Unknown style words fall back to the default.
	got := c.Classify("@moji sticker: a grumpy otter")
	if got.Style != DefaultStyle {
		t.Errorf("Style = %q, want default %q", got.Style, DefaultStyle)
	}
}

func TestIsCommand(t *testing.T) {
	c := New()
	if !c.Classify("@moji status").IsCommand() {
		t.Error("status should be a command")
	}
	if c.Classify("hello").IsCommand() {
		t.Error("plain text should not be a command")
	}
}
