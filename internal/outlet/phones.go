package outlet

import (
	"fmt"
	"regexp"
	"strings"
)

const minPhoneSize = 11

var (
	phoneNoise  = strings.NewReplacer("+", "", "(", "", ")", "", " ", "", "-", "")
	phoneGroups = regexp.MustCompile(`(\d)(\d{3})(\d{3})(\d{2})(\d{2})`)
)

// FormatPhones renders every valid 11-digit number as "+7 (XXX) XXX-XX-XX",
// keeping a "#ext" suffix as " #ext". Shorter numbers are dropped. When no
// number survives the original list is returned untouched.
func FormatPhones(phones []string) []string {
	formatted := make([]string, 0, len(phones))
	for _, raw := range phones {
		phone := phoneNoise.Replace(raw)
		if len(phone) < minPhoneSize {
			continue
		}

		var ext string
		if i := strings.IndexByte(phone, '#'); i >= 0 {
			phone, ext = phone[:i], phone[i+1:]
			if j := strings.IndexByte(ext, '#'); j >= 0 {
				ext = ext[:j]
			}
		}
		if len(phone) < minPhoneSize {
			continue
		}

		m := phoneGroups.FindStringSubmatch(phone)
		if m == nil {
			continue
		}

		out := fmt.Sprintf("+7 (%s) %s-%s-%s", m[2], m[3], m[4], m[5])
		if ext != "" {
			out += " #" + ext
		}
		formatted = append(formatted, out)
	}

	if len(formatted) == 0 {
		return phones
	}
	return formatted
}
