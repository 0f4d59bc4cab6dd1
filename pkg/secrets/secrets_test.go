/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package secrets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueNeverPrints(t *testing.T) {
	v := NewValue("hunter2")
	for _, rendered := range []string{
		fmt.Sprintf("%s", v),
		fmt.Sprintf("%v", v),
		fmt.Sprintf("%+v", v),
		fmt.Sprintf("%#v", v),
		fmt.Sprintf("%q", v),
		fmt.Sprint(v),
	} {
		require.NotContains(t, rendered, "hunter2")
		require.Contains(t, rendered, "(redacted)")
	}
	require.Equal(t, "hunter2", v.Reveal())
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("METATE_TEST_SECRET", "s3cret")
	p := NewEnv()

	v, err := p.Get("METATE_TEST_SECRET")
	require.NoError(t, err)
	require.Equal(t, "s3cret", v.Reveal())

	_, err = p.Get("METATE_TEST_SECRET_MISSING")
	require.Error(t, err)

	t.Setenv("METATE_TEST_SECRET_EMPTY", "")
	_, err = p.Get("METATE_TEST_SECRET_EMPTY")
	require.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := Static{"TWINE_PASSWORD": "pw"}
	v, err := p.Get("TWINE_PASSWORD")
	require.NoError(t, err)
	require.Equal(t, "pw", v.Reveal())
	_, err = p.Get("OTHER")
	require.Error(t, err)
}
