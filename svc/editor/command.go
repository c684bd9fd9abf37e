package editor

import (
	"crosssync/pkg/domain"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Wire names match the browser's execCommand vocabulary so clients can pass them through.
const (
	CmdBold                = "bold"
	CmdItalic              = "italic"
	CmdUnderline           = "underline"
	CmdStrikeThrough       = "strikeThrough"
	CmdJustifyLeft         = "justifyLeft"
	CmdJustifyCenter       = "justifyCenter"
	CmdJustifyRight        = "justifyRight"
	CmdJustifyFull         = "justifyFull"
	CmdInsertUnorderedList = "insertUnorderedList"
	CmdInsertOrderedList   = "insertOrderedList"
	CmdFontName            = "fontName"
	CmdFontSize            = "fontSize"
	CmdForeColor           = "foreColor"
	CmdBackColor           = "backColor"
	CmdUndo                = "undo"
	CmdRedo                = "redo"
)

type Align string

const (
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

type ListKind string

const (
	ListUnordered ListKind = "ul"
	ListOrdered   ListKind = "ol"
)

var (
	colorRe  = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-zA-Z]{3,20})$`)
	familyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{0,63}$`)
)

type Command struct {
	Name  string `json:"command"`
	Value string `json:"value,omitempty"`
}

// ParseCommand validates a wire command and its value.
func ParseCommand(name, value string) (Command, error) {
	c := Command{Name: name, Value: value}
	switch name {
	case CmdBold, CmdItalic, CmdUnderline, CmdStrikeThrough,
		CmdJustifyLeft, CmdJustifyCenter, CmdJustifyRight, CmdJustifyFull,
		CmdInsertUnorderedList, CmdInsertOrderedList, CmdUndo, CmdRedo:
		c.Value = ""
	case CmdFontName:
		if !familyRe.MatchString(value) {
			return c, errors.Wrapf(domain.ErrInvalidCommand, "font family %q", value)
		}
	case CmdFontSize:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 7 {
			return c, errors.Wrapf(domain.ErrInvalidCommand, "font size %q", value)
		}
	case CmdForeColor, CmdBackColor:
		if !colorRe.MatchString(value) {
			return c, errors.Wrapf(domain.ErrInvalidCommand, "color %q", value)
		}
	default:
		return c, errors.Wrapf(domain.ErrInvalidCommand, "command %q", name)
	}
	return c, nil
}

// Apply dispatches c to f. c must come from ParseCommand.
func Apply(f Formatter, c Command) error {
	switch c.Name {
	case CmdBold:
		return f.Bold()
	case CmdItalic:
		return f.Italic()
	case CmdUnderline:
		return f.Underline()
	case CmdStrikeThrough:
		return f.Strike()
	case CmdJustifyLeft:
		return f.Align(AlignLeft)
	case CmdJustifyCenter:
		return f.Align(AlignCenter)
	case CmdJustifyRight:
		return f.Align(AlignRight)
	case CmdJustifyFull:
		return f.Align(AlignJustify)
	case CmdInsertUnorderedList:
		return f.InsertList(ListUnordered)
	case CmdInsertOrderedList:
		return f.InsertList(ListOrdered)
	case CmdFontName:
		return f.SetFontFamily(c.Value)
	case CmdFontSize:
		return f.SetFontSize(c.Value)
	case CmdForeColor:
		return f.SetColor(c.Value)
	case CmdBackColor:
		return f.SetBackground(c.Value)
	case CmdUndo:
		return f.Undo()
	case CmdRedo:
		return f.Redo()
	}
	return errors.Wrapf(domain.ErrInvalidCommand, "command %q", c.Name)
}
