package parser

import (
	"strconv"
	"strings"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// FormatField renders a field in entry syntax. Legacy fields are written back without a name.
func FormatField(f model.Field) string {
	var b strings.Builder
	b.WriteString(string(f.Modifier))
	b.WriteByte(' ')
	b.WriteString(f.Type.String())
	if f.DefaultTag != "" {
		return b.String()
	}
	b.WriteByte(' ')
	b.WriteString(f.Name)
	if f.Help != nil {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(*f.Help))
	}
	return b.String()
}

// FormatStage renders a stage declaration that parses back to the same stage.
func FormatStage(s *model.Stage) string {
	var b strings.Builder
	b.WriteString("stage ")
	b.WriteString(s.Name)
	b.WriteString("(\n")
	for _, f := range s.Inputs {
		writeEntry(&b, FormatField(f))
	}
	for _, f := range s.Outputs {
		writeEntry(&b, FormatField(f))
	}
	writeEntry(&b, "src "+s.Lang+" "+strconv.Quote(s.SourcePath))
	b.WriteString(")")

	if s.HasSplit() {
		b.WriteString(" split using (\n")
		for _, f := range s.Splits {
			writeEntry(&b, FormatField(f))
		}
		b.WriteString(")")
	}
	b.WriteString("\n")

	return b.String()
}

func writeEntry(b *strings.Builder, entry string) {
	b.WriteString("    ")
	b.WriteString(entry)
	b.WriteString(",\n")
}
