package controllers

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sgp-fichas/fichas-api/utils"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request structs:
//
//	isodate  a YYYY-MM-DD calendar date (blank passes; combine with required to reject it)
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		err = v.RegisterValidation("isodate", isoDate)
	})
	return err
}

func isoDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || utils.IsISODate(value)
}
