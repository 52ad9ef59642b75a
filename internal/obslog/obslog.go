// Package obslog constructs the one *zap.Logger each long-running process
// uses for structured logging, promoting the teacher's indirect zap
// dependency to a directly exercised one.
package obslog

import "go.uber.org/zap"

// New builds a production JSON logger tagged with the owning service/
// component name, or a development console logger when dev is true.
func New(service string, dev bool) (*zap.Logger, error) {
	var base *zap.Logger
	var err error
	if dev {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return base.With(zap.String("service", service)), nil
}
