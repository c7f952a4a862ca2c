package api

type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

var quotes = []Quote{
	{Text: "Simplicity is prerequisite for reliability.", Author: "Edsger W. Dijkstra"},
	{Text: "Premature optimization is the root of all evil.", Author: "Donald Knuth"},
	{Text: "Make it work, make it right, make it fast.", Author: "Kent Beck"},
	{Text: "The best way to predict the future is to invent it.", Author: "Alan Kay"},
	{Text: "Talk is cheap. Show me the code.", Author: "Linus Torvalds"},
	{Text: "Clear is better than clever.", Author: "Rob Pike"},
	{Text: "A little copying is better than a little dependency.", Author: "Rob Pike"},
	{Text: "Programs must be written for people to read, and only incidentally for machines to execute.", Author: "Harold Abelson"},
	{Text: "Measuring programming progress by lines of code is like measuring aircraft building progress by weight.", Author: "Bill Gates"},
	{Text: "The most important property of a program is whether it accomplishes the intention of its user.", Author: "C. A. R. Hoare"},
	{Text: "Any sufficiently advanced technology is indistinguishable from magic.", Author: "Arthur C. Clarke"},
	{Text: "First, solve the problem. Then, write the code.", Author: "John Johnson"},
}
