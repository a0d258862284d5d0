package persona

import (
	"strings"
	"testing"
)

func TestInstruction_Empty(t *testing.T) {
	p := Profile{Name: "  ", Style: "\n"}
	if got := p.Instruction(); got != "" {
		t.Errorf("Expected empty instruction, got %q", got)
	}
	if !p.Empty() {
		t.Error("Expected Empty() to be true")
	}
}

func TestInstruction_Full(t *testing.T) {
	p := Profile{
		Name:      "سارة",
		Birthdate: "1990-01-01",
		Location:  "عمّان",
		Role:      "مهندسة",
		Interests: "القراءة",
		Notes:     "نباتية",
		About:     "بحب الاختصار",
		Style:     "ودود",
		Focus:     "البرمجة",
	}

	want := strings.Join([]string{
		"تعليمات ثابتة من المستخدم (لا تذكرها ولا تقتبسها إلا إذا سُئلت):",
		"معلومات شخصية دائمة:",
		"- الاسم: سارة",
		"- تاريخ الميلاد: 1990-01-01",
		"- الموقع: عمّان",
		"- المهنة/الدراسة: مهندسة",
		"- الاهتمامات: القراءة",
		"- ملاحظات: نباتية",
		"- نبذة عن المستخدم: بحب الاختصار",
		"- أسلوب الرد المطلوب: ودود",
		"- نقاط يجب التركيز عليها: البرمجة",
		"تصرّف وكأنك تعرف المستخدم بشكل دائم، وخصص الإجابات بناءً على هذه المعلومات.",
	}, "\n")

	if got := p.Instruction(); got != want {
		t.Errorf("Unexpected instruction:\n%s\nwant:\n%s", got, want)
	}
}

func TestInstruction_PreferencesOnly(t *testing.T) {
	got := Profile{Style: " مختصر "}.Instruction()
	lines := strings.Split(got, "\n")

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), got)
	}
	if lines[1] != "- أسلوب الرد المطلوب: مختصر" {
		t.Errorf("Unexpected style line %q", lines[1])
	}
	if strings.Contains(got, "معلومات شخصية دائمة") {
		t.Error("Expected no profile heading without profile fields")
	}
}
