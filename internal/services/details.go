package services

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func detailsJSON(fields map[string]interface{}) datatypes.JSON {
	if len(fields) == 0 {
		return nil
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(body)
}
