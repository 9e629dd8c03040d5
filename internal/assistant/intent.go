package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/savegress/vitalink/pkg/models"
)

// intentSystemPrompt instructs the extraction call to answer with a
// JSON object matching the Intent schema. The verbatim sensor channel
// list keeps the model's vocabulary aligned with the ingest log.
const intentSystemPrompt = `
The current time is %s.
You are a helpful assistant. Your task is to detect the user's intent and provide a response in the form of a JSON object complete with the following keys:

1. 'patient_id': A string representing the ID of the patient the user is inquiring about

2. 'list_date': A list of dates for which data needs to be retrieved to answer the user's question in format of yyyy-mm-dd. Leave the list empty if the user asks for data right now.

3. 'list_time': A list of times for which data needs to be retrieved to answer the user's question in format of hh:mm:ss. The system saves data in 30-minute period like 00:00:00 and 00:30:00. If the user asks for sessions during the day, please use the following information to fill in the list: Morning is from 5am to 12pm, Afternoon is from 12pm to 5pm, Evening is from 5pm to 9pm, Night is from 9pm to 4am. Leave the list empty if the user asks for data right now.

4. 'vital_sign': A list of sensor measurements that the user is asking for. Here are the available measurements from the wearable device:
   - heart_rate (also called: pulse, HR, bpm, heartbeat, cardiac rate)
   - steps (also called: step count, walking, movement activity)
   - accelerometer_x, accelerometer_y, accelerometer_z (device acceleration, motion)
   - gyroscope_x, gyroscope_y, gyroscope_z (device rotation, orientation changes)
   - gravity_x, gravity_y, gravity_z (gravity vector)
   - linear_accel_x, linear_accel_y, linear_accel_z (linear acceleration)
   - temperature (ambient or device temperature)
   - pressure (atmospheric pressure)
   - light (ambient light level, brightness)
   - proximity (distance sensor)
   - rotation_0, rotation_1, rotation_2, rotation_3, rotation_4 (device orientation quaternion)

   When the user asks about:
   - "heart rate", "HR", "pulse", "bpm" -> use heart_rate
   - "steps", "step count", "walking" -> use steps
   - "accelerometer", "acceleration" -> use accelerometer_x, accelerometer_y, accelerometer_z
   - "gyroscope", "gyro" -> use gyroscope_x, gyroscope_y, gyroscope_z
   - "all sensors" or "all data" -> include all relevant sensors

5. 'is_plot': A Boolean value indicating whether the system needs to generate a plot to answer the question more clearly (when the number of data points is too large) or if the user has requested a plot.

6. 'recognition': A Boolean value indicating whether the user is asking for activity or emotion recognition of the patient. Set to true if the user is asking for this information, otherwise false.

7. 'is_image': A Boolean value indicating whether the user is asking to show an image of the patient.
`

// defaultDailyTimes is the 4-slot grid substituted when a historical
// window names dates but no times.
var defaultDailyTimes = []string{"01:00:00", "07:00:00", "13:00:00", "19:00:00"}

// Classifier extracts a structured intent from free text via a
// low-temperature completion call.
type Classifier struct {
	completer Completer
	now       func() time.Time
}

// NewClassifier creates a classifier backed by the given completer
func NewClassifier(completer Completer) *Classifier {
	return &Classifier{
		completer: completer,
		now:       time.Now,
	}
}

// Classify sends the question to the extraction call and parses the
// reply. A malformed reply propagates as an error; callers treat that
// as an empty intent and rely on keyword fallbacks.
func (c *Classifier) Classify(ctx context.Context, question string) (models.Intent, error) {
	if question == "" {
		return models.Intent{}, fmt.Errorf("empty question")
	}

	reply, err := c.completer.Complete(ctx, CompletionRequest{
		Text:        question,
		SystemRole:  fmt.Sprintf(intentSystemPrompt, c.now().Format("2006-01-02 15:04:05")),
		Temperature: 0.1,
	})
	if err != nil {
		return models.Intent{}, fmt.Errorf("intent extraction failed: %w", err)
	}

	var intent models.Intent
	if err := json.Unmarshal([]byte(reply), &intent); err != nil {
		return models.Intent{}, fmt.Errorf("malformed intent reply: %w", err)
	}

	return intent, nil
}

// NormalizeWindow fills defaults when a historical window was requested
// with only one of dates and times: missing dates become today, missing
// times become the fixed daily grid.
func (c *Classifier) NormalizeWindow(intent *models.Intent) {
	if len(intent.Dates) == 0 && len(intent.Times) == 0 {
		return
	}
	if len(intent.Dates) == 0 {
		intent.Dates = []string{c.now().Format("2006-01-02")}
	}
	if len(intent.Times) == 0 {
		intent.Times = append([]string(nil), defaultDailyTimes...)
	}
}
