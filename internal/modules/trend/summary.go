package trend

import (
	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	types "github.com/yungbote/vibelist-backend/internal/domain/trend"
)

func summaryJSON(s types.Summary) (datatypes.JSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
