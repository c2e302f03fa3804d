package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagRe = regexp.MustCompile(`(?s)<[^>]*>`)

	nbspReplacer = strings.NewReplacer(">", "> ", "&nbsp;", " ", "&#160;", " ")

	rtfPictRe    = regexp.MustCompile(`(?is)\{\\pict[^}]*\}`)
	rtfGroupRe   = regexp.MustCompile(`(?s)\\([^;]+?);`)
	rtfControlRe = regexp.MustCompile(`\\['a-zA-Z0-9]+`)
	rtfReplacer  = strings.NewReplacer("{", " ", "}", " ", "\\\n", "\n")
)

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// processHTML drops script blocks, strips tags and decodes entities.
func processHTML(input string) (string, error) {
	input = nbspReplacer.Replace(input)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return collapse(tagRe.ReplaceAllString(input, " ")), nil
	}
	doc.Find("script").Remove()

	return collapse(doc.Text()), nil
}

func processRTF(input string) (string, error) {
	input = rtfPictRe.ReplaceAllString(input, "")
	input = rtfReplacer.Replace(input)
	input = rtfGroupRe.ReplaceAllString(input, " ")
	input = rtfControlRe.ReplaceAllString(input, " ")
	return input, nil
}

func processText(input string) (string, error) {
	return input, nil
}
