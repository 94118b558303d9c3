package model

import (
	"regexp"
	"strconv"
	"strings"
)

var firstInteger = regexp.MustCompile(`\d+`)

// DecodeCommand turns free text into a Command. Each keyword category is
// matched independently by substring, first table entry wins.
func DecodeCommand(text string) Command {
	text = strings.ToLower(text)
	cmd := Command{Repetition: 1}

	for _, v := range knownVerbs {
		if strings.Contains(text, string(v)) {
			cmd.Verb = v
			break
		}
	}

	for _, b := range knownBodies {
		if strings.Contains(text, string(b)) {
			cmd.Object = b
			break
		}
	}

	if cmd.Object != "" {
		cmd.Attribute = attributeFor(cmd.Object, strings.Split(text, " "))
	}

	for _, d := range knownDirections {
		if strings.Contains(text, string(d)) {
			cmd.Direction = d
			break
		}
	}

	if cmd.Object != Tile {
		cmd.Repetition = repetitionFor(text)
	}
	return cmd
}

// attributeFor picks the token next to the object keyword: the geometry
// number after "tile", the colour before any other body. The last exact
// keyword token decides.
func attributeFor(object BodyType, tokens []string) string {
	attr := ""
	for i, tok := range tokens {
		if tok != string(object) {
			continue
		}
		if object == Tile {
			if i+1 < len(tokens) {
				attr = tokens[i+1]
			}
		} else if i > 0 {
			attr = tokens[i-1]
		}
	}
	return attr
}

func repetitionFor(text string) int {
	if m := firstInteger.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	for _, w := range wordToNumber {
		if strings.Contains(text, w.word) {
			return w.value
		}
	}
	return 1
}
