/*-
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

package alerts

import (
	"context"
	"errors"
)

// Multi fans an alert out to every enabled service.
type Multi []AlertService

func (m Multi) Alert(ctx context.Context, alert *WebhookAlert) error {
	var errs []error

	for _, svc := range m {
		if !svc.IsEnabled() {
			continue
		}

		// Each service gets its own copy; Alert may stamp the timestamp.
		a := *alert
		if err := svc.Alert(ctx, &a); err != nil && !errors.Is(err, ErrWebhookCooldown) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) IsEnabled() bool {
	for _, svc := range m {
		if svc.IsEnabled() {
			return true
		}
	}

	return false
}
