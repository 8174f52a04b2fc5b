package fundamental

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "fundamental")
