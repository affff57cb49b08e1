/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package health

import (
	"math"
	"time"

	"github.com/carverauto/rsemon/pkg/models"
)

// IEEE 1609.2 time base. Certificate validity bounds count seconds from it.
var epoch2004 = time.Date(2004, time.January, 1, 0, 0, 0, 0, time.UTC)

// CertDaysLeft returns the days until the certificate expires, rounded up so
// a certificate lapsing later today still counts one day. Nil when the
// snapshot carries no usable validity end.
func CertDaysLeft(cert *models.Certificate, now time.Time) *int {
	if cert == nil {
		return nil
	}

	endSec, ok := cert.ValidEnd.Float()
	if !ok {
		return nil
	}

	end := epoch2004.Add(time.Duration(endSec * float64(time.Second)))
	days := int(math.Ceil(end.Sub(now).Hours() / 24))

	return &days
}

// SecurityEnabled reports whether the snapshot says V2X security is on.
// An absent certificate block reads as disabled.
func SecurityEnabled(cert *models.Certificate) bool {
	return cert != nil && cert.SecurityEnable != nil && *cert.SecurityEnable
}

// CertStateOf classifies the certificate given the enable flag and remaining
// days.
func CertStateOf(securityEnabled bool, daysLeft *int) models.CertState {
	switch {
	case !securityEnabled:
		return models.CertDisabled
	case daysLeft == nil:
		return models.CertUnknown
	case *daysLeft <= 0:
		return models.CertExpired
	default:
		return models.CertOK
	}
}
