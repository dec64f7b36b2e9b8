// puzzle/validator.go
package puzzle

import (
	"strings"

	"github.com/wfunc/atlas/models"
)

// ErrDataUnavailable is the error code reported when a continent's content was not loaded.
const ErrDataUnavailable = "E_DATA_UNAVAILABLE"

// Result 谜题校验结果
type Result struct {
	Success   bool
	Fragment  string
	ErrorCode string
	Message   string
}

func success(fragment string) Result {
	return Result{Success: true, Fragment: fragment}
}

func failure(code, message string) Result {
	return Result{ErrorCode: code, Message: message}
}

// Validator checks answers. Implementations must be safe for concurrent use.
type Validator interface {
	Validate(continent models.Continent, answer string) Result
	ValidateMeta(answer string, fragments map[string]string) bool
	ValidateFinal(answer string, draw []models.Continent) bool
}

// FinalCode 最终拆弹码：按抽取顺序取每个大洲关键词的首字母
func FinalCode(draw []models.Continent) string {
	var b strings.Builder
	for _, c := range draw {
		if kw := c.Keyword(); kw != "" {
			b.WriteByte(kw[0])
		}
	}
	return b.String()
}
