package emotion

import "strings"

// Label 情绪标签
type Label string

const (
	LabelAngry    Label = "angry"
	LabelDisgust  Label = "disgust"
	LabelFear     Label = "fear"
	LabelHappy    Label = "happy"
	LabelSad      Label = "sad"
	LabelSurprise Label = "surprise"
	LabelNeutral  Label = "neutral"

	// LabelError 该帧无法分析时的占位值
	LabelError Label = "error"
)

// Labels 已知情绪集合，下标即图表中的纵轴位置
var Labels = []Label{
	LabelAngry,
	LabelDisgust,
	LabelFear,
	LabelHappy,
	LabelSad,
	LabelSurprise,
	LabelNeutral,
}

// ParseLabel 将分类器输出规范化为已知情绪，集合外的值返回 false
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := l.Ordinal(); !ok {
		return "", false
	}
	return l, true
}

// Ordinal 返回标签在 Labels 中的位置，error 与未知标签返回 false
func (l Label) Ordinal() (int, bool) {
	for i, v := range Labels {
		if v == l {
			return i, true
		}
	}
	return 0, false
}

func (l Label) String() string {
	return string(l)
}
