package edie

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "edie")
