package tokenizer

// Class is a coarse part-of-speech class
type Class int

const (
	ClassOther Class = iota
	ClassNoun
	ClassVerb
	ClassAdjective
	ClassParticle
	ClassAuxiliaryVerb
	ClassConjunction
	ClassSymbol
)

var classNames = map[Class]string{
	ClassOther:         "other",
	ClassNoun:          "noun",
	ClassVerb:          "verb",
	ClassAdjective:     "adjective",
	ClassParticle:      "particle",
	ClassAuxiliaryVerb: "auxiliary-verb",
	ClassConjunction:   "conjunction",
	ClassSymbol:        "symbol",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "other"
}

// Open reports whether tokens of this class are indexed
func (c Class) Open() bool {
	return c == ClassNoun || c == ClassVerb || c == ClassAdjective
}

// ipaClasses maps the top-level IPA dictionary part-of-speech tag
var ipaClasses = map[string]Class{
	"名詞":  ClassNoun,
	"動詞":  ClassVerb,
	"形容詞": ClassAdjective,
	"助詞":  ClassParticle,
	"助動詞": ClassAuxiliaryVerb,
	"接続詞": ClassConjunction,
	"記号":  ClassSymbol,
}

// ClassOf classifies an IPA part-of-speech tag. Tags outside the table
// (adverbs, prefixes, interjections, fillers) are ClassOther.
func ClassOf(pos string) Class {
	if c, ok := ipaClasses[pos]; ok {
		return c
	}
	return ClassOther
}
