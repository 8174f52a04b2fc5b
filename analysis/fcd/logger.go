package fcd

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "fcd")
