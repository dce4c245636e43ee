package preprocess

import "strings"

// emojiWords is the fixed substitution table. Only high-frequency emoji that
// carry sentiment the embedding model can use; everything else passes
// through untouched. Ordered so multi-rune sequences match before their
// base rune.
var emojiWords = []string{
	"😂", " laughing ",
	"🤣", " laughing ",
	"😭", " crying ",
	"❤️", " love ",
	"❤", " love ",
	"💕", " love ",
	"🔥", " fire ",
	"💯", " hundred ",
	"👍", " thumbs up ",
	"👎", " thumbs down ",
	"🙏", " thanks ",
	"🎉", " celebration ",
	"🚀", " rocket ",
	"🤔", " thinking ",
	"😅", " nervous laugh ",
	"✨", " sparkles ",
	"👀", " eyes ",
	"🧵", " thread ",
}

var emojiReplacer = strings.NewReplacer(emojiWords...)

func replaceEmoji(s string) string {
	return emojiReplacer.Replace(s)
}
