// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the data structures shared by every stage of the
// dataset generator: scenes and their annotated objects, agent state and
// actions, captioned clips, the persisted clip rows and the conversational
// records written to the final annotations file.
package model

import "math"

// Vec3 is a point or extent in simulator world coordinates. The Y axis is up.
type Vec3 struct {
	X float64 `json:"x" bigquery:"x"`
	Y float64 `json:"y" bigquery:"y"`
	Z float64 `json:"z" bigquery:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Length returns the euclidean norm of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Quaternion is a rotation in (x, y, z, w) order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityRotation is the agent's default orientation, facing -Z.
var IdentityRotation = Quaternion{W: 1}

// YawQuaternion returns the rotation of angle radians about the up axis.
func YawQuaternion(angle float64) Quaternion {
	return Quaternion{Y: math.Sin(angle / 2), W: math.Cos(angle / 2)}
}

// Yaw extracts the rotation about the up axis, in radians within (-pi, pi].
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Y+q.X*q.Z), 1-2*(q.Y*q.Y+q.X*q.X))
}
