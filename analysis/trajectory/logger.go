package trajectory

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "trajectory")
