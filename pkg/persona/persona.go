// Package persona builds the standing system instruction from the user's
// profile and preferences.
package persona

import "strings"

const (
	header      = "تعليمات ثابتة من المستخدم (لا تذكرها ولا تقتبسها إلا إذا سُئلت):"
	profileHead = "معلومات شخصية دائمة:"
	closing     = "تصرّف وكأنك تعرف المستخدم بشكل دائم، وخصص الإجابات بناءً على هذه المعلومات."
)

// Profile is what the user told the assistant about themselves.
type Profile struct {
	Name      string `json:"name" yaml:"name" mapstructure:"name"`
	Birthdate string `json:"birthdate" yaml:"birthdate" mapstructure:"birthdate"`
	Location  string `json:"location" yaml:"location" mapstructure:"location"`
	Role      string `json:"role" yaml:"role" mapstructure:"role"`
	Interests string `json:"interests" yaml:"interests" mapstructure:"interests"`
	Notes     string `json:"notes" yaml:"notes" mapstructure:"notes"`

	About string `json:"about" yaml:"about" mapstructure:"about"`
	Style string `json:"style" yaml:"style" mapstructure:"style"`
	Focus string `json:"focus" yaml:"focus" mapstructure:"focus"`
}

type field struct {
	label string
	value string
}

// Empty reports whether nothing would be sent.
func (p Profile) Empty() bool {
	return p.Instruction() == ""
}

// Instruction renders the profile as the system instruction. It is empty
// when every field is blank.
func (p Profile) Instruction() string {
	personal := lines([]field{
		{"الاسم", p.Name},
		{"تاريخ الميلاد", p.Birthdate},
		{"الموقع", p.Location},
		{"المهنة/الدراسة", p.Role},
		{"الاهتمامات", p.Interests},
		{"ملاحظات", p.Notes},
	})
	prefs := lines([]field{
		{"نبذة عن المستخدم", p.About},
		{"أسلوب الرد المطلوب", p.Style},
		{"نقاط يجب التركيز عليها", p.Focus},
	})

	if len(personal) == 0 && len(prefs) == 0 {
		return ""
	}

	out := []string{header}
	if len(personal) > 0 {
		out = append(out, profileHead)
		out = append(out, personal...)
	}
	out = append(out, prefs...)
	out = append(out, closing)
	return strings.Join(out, "\n")
}

func lines(fields []field) []string {
	var out []string
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			out = append(out, "- "+f.label+": "+v)
		}
	}
	return out
}
