package plotting

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "plotting")
